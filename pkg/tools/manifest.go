package tools

import (
	"time"

	"skillforge/pkg/models"
)

// BuildManifest renders the tool_manifest.json document for the current
// registry, at generatedAt (callers pass time.Now() in production and a
// fixed instant in tests; the timestamp is always rendered in UTC).
func BuildManifest(generatedAt time.Time) models.Manifest {
	registry := Registry()
	entries := make([]models.ManifestEntry, 0, len(registry))
	for _, t := range registry {
		entries = append(entries, models.ManifestEntry{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.ParameterSchema,
			Invocation: models.Invocation{
				Type: "shell_script",
				Path: "/tools/" + t.Name + ".sh",
			},
		})
	}
	return models.Manifest{
		Version:     "1.0",
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Tools:       entries,
	}
}
