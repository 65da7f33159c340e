package httpapi

import "github.com/korylprince/streamchat/api"

//StatusResponse reports how chat requests are served. Mode is "mock" when no upstream credential
//is configured and "upstream" otherwise.
type StatusResponse struct {
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

//ReadTranscriptsResponse contains a list of archived Transcripts, newest first
type ReadTranscriptsResponse struct {
	Transcripts []*api.Transcript `json:"transcripts"`
}
