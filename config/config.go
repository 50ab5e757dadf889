package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration with viper
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it. Using default values and environment variables.")
	}

	viper.SetDefault("jellyfin.address", "http://localhost:8096")
	viper.SetDefault("output.dir", "./output")
	viper.SetDefault("recap.top_songs", 5)
	viper.SetDefault("recap.top_artists", 5)

	// statistics fetch is one request per item per user; fan it out
	viper.SetDefault("fetch.workers", 4)

	viper.SetDefault("db.path", "./data/jellywrapped.db")
	viper.SetDefault("snapshot.reuse", false)

	// preview server defaults
	viper.SetDefault("serve.addr", "localhost:8080")

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Println("Config file not found, using default values and environment variables")
	} else {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	// check for required settings
	requiredVars := []string{"jellyfin.api_key"}
	missingVars := []string{}

	for _, v := range requiredVars {
		if !viper.IsSet(v) {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missingVars, ", "))
	}
}
