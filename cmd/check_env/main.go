// Command check_env prepares and checks the external tools the translator
// needs: the managed Python environment with pdf2docx, and LibreOffice.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"pdf-translator/internal/pdf"
	"pdf-translator/internal/python"
)

func main() {
	interpreter := flag.String("python", "", "use this Python interpreter instead of the managed environment")
	libreOffice := flag.String("libreoffice", "", "LibreOffice executable to check")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	python.Configure(python.Config{Interpreter: *interpreter})

	fmt.Println("1. Python environment")
	env, err := python.EnsureGlobalEnv(ctx, func(msg string) {
		fmt.Printf("   %s\n", msg)
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Base Dir:    %s\n", env.BaseDir)
	fmt.Printf("   Python Path: %s\n", env.GetPythonPath())
	fmt.Printf("   Packages:    %v\n", python.RequiredPackages)
	fmt.Printf("   Is Ready:    %v\n", env.IsReady(ctx))
	fmt.Println()

	fmt.Println("2. LibreOffice")
	bin, err := pdf.FindLibreOffice(*libreOffice)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("   Without LibreOffice the translated DOCX is delivered instead of a PDF.")
		os.Exit(1)
	}
	fmt.Printf("   Binary:      %s\n", bin)
	fmt.Println()
	fmt.Println("All tools available")
}
