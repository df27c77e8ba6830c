package main

import "github.com/nkratastr/roborock-data-pipeline/internal/app"

func main() {
	app.Execute()
}
