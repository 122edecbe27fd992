package zerolog_config

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var startupOnce sync.Once

// ElasticsearchWriter ships ECS-formatted log lines straight to an
// Elasticsearch index endpoint.
type ElasticsearchWriter struct {
	URL string
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	resp, err := http.Post(ew.URL+"/_doc", "application/json", bytes.NewBuffer(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}
	return len(p), nil
}

// Startup configures the global logger once: pretty console output always,
// plus ECS shipping to Elasticsearch when a URL is given. app tags every
// event with the client's role (station, panel).
func Startup(elasticsearchURL, app string) {
	startupOnce.Do(func() {
		level := zerolog.InfoLevel
		if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
		zerolog.SetGlobalLevel(level)

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

		if elasticsearchURL == "" {
			log.Logger = zerolog.New(consoleWriter).With().
				Str("app", app).
				Timestamp().Logger()
			return
		}

		ecsLogger := ecszerolog.New(&ElasticsearchWriter{
			URL: elasticsearchURL + "/" + app,
		})
		multi := zerolog.MultiLevelWriter(ecsLogger, consoleWriter)

		log.Logger = zerolog.New(multi).With().
			Str("app", app).
			Timestamp().Logger()
	})
}
