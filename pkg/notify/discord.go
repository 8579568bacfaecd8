package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/types"
)

// Embed colors for the three result tiers
const (
	ColorSuccess = 0x00FF00
	ColorPartial = 0xFFA500
	ColorFailure = 0xFF0000
)

// FooterText identifies the sender in every embed
const FooterText = "KTP Deploy"

// MaxErrorLines caps how many error lines one embed carries
const MaxErrorLines = 5

// Embed is the Discord embed object the relay forwards verbatim
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      Footer  `json:"footer"`
	Timestamp   string  `json:"timestamp"`
}

// Field is one name/value pair inside an embed
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer
type Footer struct {
	Text string `json:"text"`
}

// payload is the relay envelope: the shared secret and target channel
// ride alongside the embeds
type payload struct {
	ChannelID string  `json:"channel_id"`
	Secret    string  `json:"secret"`
	Embeds    []Embed `json:"embeds"`
}

// Notifier posts embeds to the Discord relay
type Notifier struct {
	cfg    config.DiscordConfig
	client *http.Client
}

// New creates a notifier for the given relay configuration
func New(cfg config.DiscordConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether the relay is usable
func (n *Notifier) Configured() bool {
	return n.cfg.Configured()
}

// Send posts one embed to the relay. An unconfigured relay is a no-op
// that logs and reports false; it is never an error.
func (n *Notifier) Send(ctx context.Context, embed Embed) bool {
	logger := log.WithComponent("notify")

	if !n.Configured() {
		logger.Info().Msg("Discord notification skipped (not configured)")
		return false
	}

	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	embed.Footer = Footer{Text: FooterText}

	body, err := json.Marshal(payload{
		ChannelID: n.cfg.ChannelID,
		Secret:    n.cfg.Secret,
		Embeds:    []Embed{embed},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode Discord payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.RelayURL, bytes.NewReader(body))
	if err != nil {
		logger.Error().Err(err).Msg("failed to build Discord request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("Discord notification failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Msg("Discord notification failed")
		return false
	}

	logger.Info().Msg("Discord notification sent")
	return true
}

// DeployEmbed builds the deployment result embed
func DeployEmbed(version string, outcome types.Outcome, clusters, components, errors []string) Embed {
	embed := Embed{
		Fields: []Field{
			{Name: "Clusters", Value: joinOrDash(clusters), Inline: true},
			{Name: "Components", Value: joinOrDash(components), Inline: true},
		},
	}

	if outcome == types.OutcomeSuccess {
		embed.Title = "Deployment Successful"
		embed.Description = fmt.Sprintf("Version `%s` deployed successfully", version)
		embed.Color = ColorSuccess
	} else {
		embed.Title = "Deployment Failed"
		embed.Description = fmt.Sprintf("Version `%s` deployment had errors", version)
		embed.Color = ColorFailure
	}

	if len(errors) > 0 {
		embed.Fields = append(embed.Fields, Field{
			Name:  "Errors",
			Value: fmt.Sprintf("```%s```", errorBlock(errors)),
		})
	}
	return embed
}

// RestartEmbed builds the three-tier restart summary embed
func RestartEmbed(tally types.RestartTally) Embed {
	total := tally.Started + tally.Failed

	var embed Embed
	switch tally.Outcome() {
	case types.OutcomeSuccess:
		embed.Title = "Servers Restarted"
		embed.Description = fmt.Sprintf("All %d instances on `%s` are back up", total, tally.Cluster)
		embed.Color = ColorSuccess
	case types.OutcomePartial:
		embed.Title = "Restart Partially Failed"
		embed.Description = fmt.Sprintf("%d/%d instances on `%s` restarted", tally.Started, total, tally.Cluster)
		embed.Color = ColorPartial
	default:
		embed.Title = "Restart Failed"
		embed.Description = fmt.Sprintf("No instances on `%s` came back up", tally.Cluster)
		embed.Color = ColorFailure
	}
	return embed
}

func errorBlock(errors []string) string {
	block := ""
	for i, e := range errors {
		if i >= MaxErrorLines {
			block += fmt.Sprintf("\n... and %d more", len(errors)-MaxErrorLines)
			break
		}
		if i > 0 {
			block += "\n"
		}
		block += e
	}
	return block
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	joined := values[0]
	for _, v := range values[1:] {
		joined += ", " + v
	}
	return joined
}
