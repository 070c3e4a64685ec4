package ml

import (
	"errors"
	"os"
)

const defaultGoogleModel = "gemini-1.5-flash"

// GoogleConfig holds configuration for the Vertex AI reader
type GoogleConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}

// applyEnv fills settings left out of the config file
func (c *GoogleConfig) applyEnv() {
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.Model == "" {
		c.Model = defaultGoogleModel
	}
}

func (c *GoogleConfig) validate() error {
	if c.ProjectID == "" {
		return errors.New("project id is required (ml.google.project_id or GOOGLE_PROJECT_ID)")
	}
	if c.Location == "" {
		return errors.New("location is required (ml.google.location or GOOGLE_LOCATION)")
	}
	return nil
}

// LocalConfig holds configuration for the local reader
type LocalConfig struct {
	ModelPath string
}

func (c *LocalConfig) applyEnv() {
	if c.ModelPath == "" {
		c.ModelPath = os.Getenv("LOCAL_MODEL_PATH")
	}
}
