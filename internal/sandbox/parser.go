// internal/sandbox/parser.go
package sandbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/FairForge/intelvault/internal/report"
	"go.uber.org/zap"
)

// result is one sandbox run inside a behavior-analysis collection.
type result struct {
	Attributes struct {
		SandboxName string `json:"sandbox_name"`
		IPTraffic   []struct {
			DestinationIP   string `json:"destination_ip"`
			DestinationPort int    `json:"destination_port"`
		} `json:"ip_traffic"`
		HTTPConversations []struct {
			URL string `json:"url"`
		} `json:"http_conversations"`
	} `json:"attributes"`
}

// Parser extracts network indicators from behavior reports. A behavior report
// is a collection of results from multiple sandboxes; indicators are
// deduplicated across the whole collection.
type Parser struct {
	logger   *zap.Logger
	renderer *report.Renderer
}

// NewParser creates a sandbox report parser.
func NewParser(renderer *report.Renderer, logger *zap.Logger) *Parser {
	return &Parser{logger: logger, renderer: renderer}
}

// Parse walks the sandbox results of a behavior report and reports the unique
// network indicators it finds. The artifact reference may carry a resolved
// object or only an identifier.
func (p *Parser) Parse(rep catalog.Report, obj *catalog.Object) error {
	var results []result
	if err := json.Unmarshal(rep, &results); err != nil {
		return fmt.Errorf("sandbox: decoding behavior report: %w", err)
	}

	seen := make(map[string]bool)
	for _, sandbox := range results {
		if sandbox.Attributes.SandboxName == "" {
			continue
		}

		for _, traffic := range sandbox.Attributes.IPTraffic {
			if traffic.DestinationIP == "" || seen[traffic.DestinationIP] {
				continue
			}
			seen[traffic.DestinationIP] = true

			port := strconv.Itoa(traffic.DestinationPort)
			p.logger.Debug("network indicator",
				zap.String("type", "host"),
				zap.String("host", traffic.DestinationIP),
				zap.String("port", port))
			p.renderer.WriteNetworkRow(obj, traffic.DestinationIP, port, "")
		}

		for _, conv := range sandbox.Attributes.HTTPConversations {
			if conv.URL == "" || seen[conv.URL] {
				continue
			}
			seen[conv.URL] = true

			p.logger.Debug("network indicator",
				zap.String("type", "url"),
				zap.String("url", Defang(conv.URL)))
			p.renderer.WriteNetworkRow(obj, "", "", conv.URL)
		}
	}

	return nil
}

// Defang rewrites http(s) schemes to hxxp(s) so extracted URLs are not
// accidentally clickable in logs and exports.
func Defang(url string) string {
	return strings.Replace(url, "http", "hxxp", 1)
}
