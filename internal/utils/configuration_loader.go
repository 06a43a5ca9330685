package utils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	embeddedConfigurationErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationFileErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplateConstant   = "unable to decode configuration: %w"
	environmentKeySeparatorConstant            = "_"
	configurationKeySeparatorConstant          = "."
	configurationListSeparatorConstant         = ","
	xdgConfigHomeEnvironmentNameConstant       = "XDG_CONFIG_HOME"
	userConfigurationDirectoryPrefixConstant   = "."
)

// ConfigurationMetadata reports details about the loaded configuration sources.
type ConfigurationMetadata struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers configuration sources: defaults, embedded
// content, a configuration file, and environment variables, in ascending
// precedence.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedContent   []byte
	embeddedType      string
}

// NewConfigurationLoader constructs a loader for the named configuration.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       searchPaths,
	}
}

// SetEmbeddedConfiguration registers configuration content compiled into the binary.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, configurationType string) {
	loader.embeddedContent = content
	loader.embeddedType = configurationType
}

// LoadConfiguration merges every configuration source and decodes the
// result into the target structure.
func (loader *ConfigurationLoader) LoadConfiguration(explicitFilePath string, defaultValues map[string]any, target any) (ConfigurationMetadata, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedContent) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		viperInstance.SetConfigType(embeddedType)
		if embeddedReadError := viperInstance.ReadConfig(bytes.NewReader(loader.embeddedContent)); embeddedReadError != nil {
			return ConfigurationMetadata{}, fmt.Errorf(embeddedConfigurationErrorTemplateConstant, embeddedReadError)
		}
		viperInstance.SetConfigType(loader.configurationType)
	}

	metadata := ConfigurationMetadata{}
	configurationFilePath := explicitFilePath
	if len(configurationFilePath) == 0 {
		configurationFilePath = loader.locateConfigurationFile()
	}
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return ConfigurationMetadata{}, fmt.Errorf(configurationFileErrorTemplateConstant, configurationFilePath, mergeError)
		}
		metadata.ConfigFileUsed = configurationFilePath
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	viperInstance.AutomaticEnv()

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(configurationListSeparatorConstant),
	))
	if decodeError := viperInstance.Unmarshal(target, decodeHook); decodeError != nil {
		return ConfigurationMetadata{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}
	return metadata, nil
}

// locateConfigurationFile searches the configured paths followed by the
// XDG and home configuration directories.
func (loader *ConfigurationLoader) locateConfigurationFile() string {
	configurationFileName := loader.configurationName + configurationKeySeparatorConstant + loader.configurationType
	userDirectoryName := userConfigurationDirectoryPrefixConstant + strings.ToLower(loader.environmentPrefix)

	candidateDirectories := make([]string, 0, len(loader.searchPaths)+2)
	candidateDirectories = append(candidateDirectories, loader.searchPaths...)
	if xdgConfigHome := os.Getenv(xdgConfigHomeEnvironmentNameConstant); len(xdgConfigHome) > 0 {
		candidateDirectories = append(candidateDirectories, filepath.Join(xdgConfigHome, userDirectoryName))
	}
	if homeDirectory, homeLookupError := os.UserHomeDir(); homeLookupError == nil && len(homeDirectory) > 0 {
		candidateDirectories = append(candidateDirectories, filepath.Join(homeDirectory, userDirectoryName))
	}

	for _, candidateDirectory := range candidateDirectories {
		candidatePath := filepath.Join(candidateDirectory, configurationFileName)
		if fileInformation, statError := os.Stat(candidatePath); statError == nil && !fileInformation.IsDir() {
			return candidatePath
		}
	}
	return ""
}
