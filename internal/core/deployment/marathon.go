package deployment

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var ErrMissingAppID = errors.New("marathon application definition has no id")

// MarathonAppID reads the id of a Marathon application definition.
func MarathonAppID(content []byte) (string, error) {
	var app struct {
		ID string `yaml:"id"`
	}
	if err := yaml.Unmarshal(content, &app); err != nil {
		return "", fmt.Errorf("parse marathon application: %w", err)
	}
	if app.ID == "" {
		return "", ErrMissingAppID
	}
	return app.ID, nil
}
