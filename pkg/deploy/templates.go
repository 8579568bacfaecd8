package deploy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/remote"
	"github.com/afraznein/ktpfleet/pkg/types"
)

// TemplateExt marks files in the templates directory to be rendered
const TemplateExt = ".tmpl"

// templateData is what every config template sees
type templateData struct {
	Profile      types.Profile
	Cluster      *types.Cluster
	ServerDir    string
	DataServerIP string
}

// deployConfigs renders every template against the selected profile
// and uploads the results into each instance's plugin config dir.
func (d *Deployer) deployConfigs(session remote.Session, cluster *types.Cluster, profile string) error {
	logger := log.WithCluster(cluster.Name)

	if d.TemplatesDir == "" {
		logger.Info().Msg("no templates directory, skipping config deployment")
		return nil
	}
	// The default templates dir need not exist on ad-hoc runs
	if _, err := os.Stat(d.TemplatesDir); os.IsNotExist(err) {
		logger.Info().Str("dir", d.TemplatesDir).Msg("templates directory not found, skipping config deployment")
		return nil
	}

	profileValues, ok := d.cfg.Profiles[profile]
	if !ok {
		return fmt.Errorf("unknown profile: %s", profile)
	}

	templates, err := loadTemplates(d.TemplatesDir)
	if err != nil {
		return err
	}

	logger.Info().Str("profile", profile).Int("templates", len(templates)).Msg("deploying configs")

	for _, serverDir := range cluster.InstanceDirs() {
		configDir := fmt.Sprintf("%s/%s/serverfiles/dod/addons/ktpamx/configs", cluster.HomeDir(), serverDir)

		for name, tmpl := range templates {
			rendered, err := renderTemplate(tmpl, templateData{
				Profile:      profileValues,
				Cluster:      cluster,
				ServerDir:    serverDir,
				DataServerIP: d.cfg.DataServerIP,
			})
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", name, err)
			}

			dest := configDir + "/" + strings.TrimSuffix(name, TemplateExt)
			if err := session.WriteFile(dest, rendered, 0644); err != nil {
				return fmt.Errorf("failed to upload %s: %w", dest, err)
			}
			logger.Debug().Str("instance", serverDir).Str("config", name).Msg("config deployed")
		}
	}
	return nil
}

// loadTemplates parses every *.tmpl file in the directory
func loadTemplates(dir string) (map[string]*template.Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates dir: %w", err)
	}

	templates := make(map[string]*template.Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TemplateExt) {
			continue
		}
		tmpl, err := template.ParseFiles(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}
		templates[entry.Name()] = tmpl
	}
	return templates, nil
}

func renderTemplate(tmpl *template.Template, data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
