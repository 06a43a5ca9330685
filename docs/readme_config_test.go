package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	documentationFileNameConstant    = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
)

type readmeApplicationConfiguration struct {
	Common struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"common"`
	Server struct {
		Address              string `yaml:"address"`
		ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
	} `yaml:"server"`
	Queue struct {
		Driver    string `yaml:"driver"`
		BrokerURL string `yaml:"broker_url"`
	} `yaml:"queue"`
	Worker struct {
		Count                 int `yaml:"count"`
		ExecutionDelaySeconds int `yaml:"execution_delay_seconds"`
	} `yaml:"worker"`
}

func TestReadmeConfigurationSnippetParses(testInstance *testing.T) {
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	documentationPath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, documentationFileNameConstant)
	contentBytes, readError := os.ReadFile(documentationPath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	remainingText := contentText[headerIndex:]
	fenceEndRelativeIndex := strings.Index(remainingText, yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)
	fenceEndIndex := headerIndex + fenceEndRelativeIndex

	snippetContent := strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : fenceEndIndex])

	parsedConfiguration := readmeApplicationConfiguration{}
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippetContent), &parsedConfiguration))

	require.NotEmpty(testInstance, parsedConfiguration.Common.LogLevel)
	require.NotEmpty(testInstance, parsedConfiguration.Server.Address)
	require.Contains(testInstance, []string{"memory", "amqp"}, parsedConfiguration.Queue.Driver)
	require.Greater(testInstance, parsedConfiguration.Worker.Count, 0)
	require.Greater(testInstance, parsedConfiguration.Worker.ExecutionDelaySeconds, 0)
}
