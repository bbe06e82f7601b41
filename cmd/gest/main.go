package main

import (
	"os"

	"gest"
	"gest/examples"
)

var version = "dev"

func main() {
	pageURL := os.Getenv("GEST_PAGE_URL")
	if pageURL == "" {
		pageURL = examples.DefaultPageURL
	}
	want := os.Getenv("GEST_PAGE_TEXT")
	if want == "" {
		want = "Google"
	}

	s := gest.New()
	examples.Register(s, pageURL, want)

	gest.Version = version
	gest.Main(s)
}
