package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func TestSend(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(config.DiscordConfig{
		RelayURL:  server.URL,
		ChannelID: "123456",
		Secret:    "shh",
	})

	ok := n.Send(context.Background(), Embed{Title: "Test", Color: ColorSuccess})
	require.True(t, ok)

	assert.Equal(t, "123456", received.ChannelID)
	assert.Equal(t, "shh", received.Secret)
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "Test", received.Embeds[0].Title)
	assert.Equal(t, FooterText, received.Embeds[0].Footer.Text)
	assert.NotEmpty(t, received.Embeds[0].Timestamp)
}

func TestSendRelayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := New(config.DiscordConfig{RelayURL: server.URL, ChannelID: "1", Secret: "s"})
	assert.False(t, n.Send(context.Background(), Embed{Title: "Test"}))
}

func TestSendUnconfigured(t *testing.T) {
	n := New(config.DiscordConfig{})
	assert.False(t, n.Send(context.Background(), Embed{Title: "Test"}))
}

func TestDeployEmbed(t *testing.T) {
	embed := DeployEmbed("20260127", types.OutcomeSuccess,
		[]string{"atlanta", "dallas"}, []string{"engine"}, nil)

	assert.Equal(t, "Deployment Successful", embed.Title)
	assert.Equal(t, ColorSuccess, embed.Color)
	assert.Contains(t, embed.Description, "20260127")
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "atlanta, dallas", embed.Fields[0].Value)
	assert.Equal(t, "engine", embed.Fields[1].Value)
}

func TestDeployEmbedErrorsCapped(t *testing.T) {
	errors := []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7"}
	embed := DeployEmbed("v", types.OutcomeFailure, []string{"atlanta"}, []string{"engine"}, errors)

	assert.Equal(t, "Deployment Failed", embed.Title)
	assert.Equal(t, ColorFailure, embed.Color)
	require.Len(t, embed.Fields, 3)

	errField := embed.Fields[2].Value
	assert.Contains(t, errField, "e5")
	assert.NotContains(t, errField, "e6")
	assert.Contains(t, errField, "... and 2 more")
}

func TestRestartEmbed(t *testing.T) {
	tests := []struct {
		name      string
		tally     types.RestartTally
		wantColor int
		wantTitle string
	}{
		{
			name:      "all up",
			tally:     types.RestartTally{Cluster: "atlanta", Started: 3},
			wantColor: ColorSuccess,
			wantTitle: "Servers Restarted",
		},
		{
			name:      "partial",
			tally:     types.RestartTally{Cluster: "atlanta", Started: 2, Failed: 1},
			wantColor: ColorPartial,
			wantTitle: "Restart Partially Failed",
		},
		{
			name:      "all down",
			tally:     types.RestartTally{Cluster: "atlanta", Failed: 3},
			wantColor: ColorFailure,
			wantTitle: "Restart Failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embed := RestartEmbed(tt.tally)
			assert.Equal(t, tt.wantColor, embed.Color)
			assert.Equal(t, tt.wantTitle, embed.Title)
		})
	}
}
