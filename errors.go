/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"log"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(cfg *Config, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(&htmlBody, `<link rel="stylesheet" href="%s/assets/app.css">`, cfg.prefix)
	fmt.Fprintf(&htmlBody, "<title>%s</title></head>", html.EscapeString(title))
	fmt.Fprintf(&htmlBody, `<body><main class="page">%s</main></body></html>`, body)

	return htmlBody.String()
}
