package main

import (
	"context"
	"flag"
	"log"

	"github.com/spf13/viper"

	"github.com/wrapped-fm/jellywrapped/config"
	"github.com/wrapped-fm/jellywrapped/db"
	"github.com/wrapped-fm/jellywrapped/service/jellyfin"
	"github.com/wrapped-fm/jellywrapped/service/wrapped"
)

func main() {
	serve := flag.Bool("serve", false, "serve the output directory over HTTP after generating")
	serveOnly := flag.Bool("serve-only", false, "skip generation and serve existing reports")
	flag.Parse()

	config.Load()

	database, err := db.New(viper.GetString("db.path"))
	if err != nil {
		log.Fatalf("Error opening snapshot database: %v", err)
	}
	defer database.Close()

	if err := database.Initialize(); err != nil {
		log.Fatalf("Error initializing snapshot database: %v", err)
	}

	client := jellyfin.NewClient(
		viper.GetString("jellyfin.address"),
		viper.GetString("jellyfin.api_key"),
	)

	service := wrapped.NewService(client, database, wrapped.Options{
		OutputDir:     viper.GetString("output.dir"),
		TopSongs:      viper.GetInt("recap.top_songs"),
		TopArtists:    viper.GetInt("recap.top_artists"),
		Workers:       viper.GetInt("fetch.workers"),
		ReuseSnapshot: viper.GetBool("snapshot.reuse"),
	})

	if !*serveOnly {
		if err := service.Generate(context.Background()); err != nil {
			log.Fatalf("Error generating wrapped reports: %v", err)
		}
	}

	if *serve || *serveOnly {
		if err := service.Serve(viper.GetString("serve.addr")); err != nil {
			log.Fatalf("Error serving reports: %v", err)
		}
	}
}
