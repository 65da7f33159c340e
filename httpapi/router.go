package httpapi

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/korylprince/streamchat/chatbot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

//Config configures the HTTP API
type Config struct {
	Upstream  chatbot.Upstream //required
	Prefix    string           //url prefix to mount the api to without trailing slash
	KeepAlive time.Duration    //interval between keepalive comments; 0 disables them
	RateLimit float64          //chat requests per second; 0 disables limiting
	RateBurst int
	DB        *sql.DB //transcript archive; nil disables it
	Registry  *prometheus.Registry
	Logger    logrus.FieldLogger
}

type server struct {
	upstream  chatbot.Upstream
	keepAlive time.Duration
	db        *sql.DB
	metrics   *metrics
	log       logrus.FieldLogger
}

//NewRouter returns an HTTP router for the HTTP API
func NewRouter(cfg *Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &server{
		upstream:  cfg.Upstream,
		keepAlive: cfg.KeepAlive,
		db:        cfg.DB,
		metrics:   newMetrics(reg),
		log:       log,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	//construct middleware
	var m = func(h returnHandler) http.Handler {
		return logMiddleware(jsonMiddleware(h), log)
	}
	var e = func(h returnHandler) http.Handler {
		return logMiddleware(writeJSON(h), log)
	}

	prefix := strings.TrimRight(cfg.Prefix, "/")
	r := mux.NewRouter()

	r.Path(prefix + "/chat").Methods("POST").Handler(m(rateLimitMiddleware(handleChat(s), limiter)))
	r.Path(prefix + "/status").Methods("GET").Handler(m(handleReadStatus(s)))
	if s.db != nil {
		r.Path(prefix + "/transcripts/").Methods("GET").Handler(m(txMiddleware(handleReadTranscripts, s.db)))
	}

	r.Path("/metrics").Methods("GET").Handler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.NotFoundHandler = e(notFoundHandler)
	r.MethodNotAllowedHandler = e(methodNotAllowedHandler)

	return r
}
