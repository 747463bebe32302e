// Package locking runs a task while holding a Redis lock so that only one
// replica performs it at a time. serve uses it to keep concurrently starting
// instances from applying migrations at the same time.
//
//	exec := locking.New(locker, locking.WithWaitForLock(true))
//	err := exec.Execute(ctx, locking.Job{Name: "migrate", AtMostFor: time.Minute}, migrate)
package locking
