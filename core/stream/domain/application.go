package domain

import (
	"strconv"

	"streamhub/modules/pagination"
)

const DefaultStreamURLBase = "rtmp://localhost/stream/"

func NewApp(
	reader StreamReadStore,
	writer StreamWriteStore,
	issuer PublishIssuer,
	cursors *pagination.Codec[StreamKey],
	streamURLBase string,
) *Application {
	if streamURLBase == "" {
		streamURLBase = DefaultStreamURLBase
	}
	return &Application{
		reader:        reader,
		writer:        writer,
		issuer:        issuer,
		cursors:       cursors,
		streamURLBase: streamURLBase,
	}
}

func (app *Application) streamURL(id int64) string {
	return app.streamURLBase + strconv.FormatInt(id, 10)
}
