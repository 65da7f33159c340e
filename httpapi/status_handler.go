package httpapi

import (
	"net/http"

	"github.com/korylprince/streamchat/api"
	"github.com/korylprince/streamchat/chatbot"
)

//GET /status
func handleReadStatus(s *server) returnHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlerResponse {
		mode := "upstream"
		if s.upstream.Name() == chatbot.ProviderMock {
			mode = "mock"
		}

		return &handlerResponse{Code: http.StatusOK, Body: &StatusResponse{
			Mode:     mode,
			Provider: s.upstream.Name(),
			Model:    s.upstream.Model(&api.ChatTurnRequest{}),
		}}
	}
}
