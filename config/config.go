package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	OpenAIApiKey string
	OpenAIModel  string
	Environment  string
}

type Server struct {
	Port string
}
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// IsDevelopment controls whether raw error messages are included in 500
// responses. Anything other than "production" counts as development.
func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo-0125")
	viper.SetDefault("APP_ENV", "development")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.OpenAIApiKey = viper.GetString("OPENAI_API_KEY")
	config.OpenAIModel = viper.GetString("OPENAI_MODEL")
	config.Environment = viper.GetString("APP_ENV")

	if config.OpenAIApiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set. Grading and outline generation will be unavailable.")
	}

	log.Info().Str("port", config.Server.Port).Str("env", config.Environment).Msg("Config loaded")
	return &config, nil
}
