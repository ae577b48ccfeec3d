//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testUserAgent = "(mapshield-integration, test@example.com)"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("mapshield-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// startRedis runs a redis container and returns a redis:// URL for it.
func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

const forecastBody = `{
  "properties": {
    "periods": [
      {
        "name": "This Afternoon",
        "temperature": 88,
        "temperatureUnit": "F",
        "probabilityOfPrecipitation": {"value": 60},
        "windSpeed": "20 to 30 mph",
        "windDirection": "SW",
        "shortForecast": "Showers And Thunderstorms"
      }
    ]
  }
}`

const gridBody = `{
  "properties": {
    "hazards": {
      "values": [
        {
          "validTime": "2024-05-10T12:00:00+00:00/2024-05-11T00:00:00+00:00",
          "value": [{"phenomenon": "TO", "significance": "W", "event_number": 210}]
        }
      ]
    }
  }
}`

// startNWS serves canned point, forecast and gridpoint responses for any
// coordinate.
func startNWS(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /points/{coords}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"properties":{"forecast":"%s/gridpoints/TOP/31,80/forecast","gridId":"TOP","gridX":31,"gridY":80}}`, srv.URL)
	})
	mux.HandleFunc("GET /gridpoints/{office}/{xy}/forecast", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, forecastBody)
	})
	mux.HandleFunc("GET /gridpoints/{office}/{xy}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, gridBody)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
