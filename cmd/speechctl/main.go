package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-speech/internal/protocol"
	"github.com/loqalabs/loqa-speech/internal/speech"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'resolve', 'fingerprint' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "resolve":
		if err := runResolve(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "fingerprint":
		if err := runFingerprint(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runResolve(args []string, out io.Writer) error {
	cmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	servers := cmd.String("servers", nats.DefaultURL, "Comma separated NATS server URLs")
	text := cmd.String("text", "", "Text to speak")
	language := cmd.String("language", "en-US", "BCP 47 language code")
	timeout := cmd.Duration("timeout", 30*time.Second, "Request timeout")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*text) == "" {
		return errors.New("-text is required")
	}

	nc, err := nats.Connect(*servers, nats.Name("speechctl"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	req := protocol.SpeechRequest{
		RequestID: uuid.NewString(),
		Text:      *text,
		Language:  *language,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	start := time.Now()
	msg, err := nc.Request(protocol.SubjectSpeechResolve, data, *timeout)
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}

	var resp protocol.SpeechResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return fmt.Errorf("decode speech response: %w", err)
	}
	return printResponse(out, resp, time.Since(start))
}

func printResponse(out io.Writer, resp protocol.SpeechResponse, elapsed time.Duration) error {
	if resp.Error != nil {
		return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}
	fmt.Fprintf(out, "path:    %s\n", resp.Path)
	fmt.Fprintf(out, "source:  %s\n", resp.Source)
	fmt.Fprintf(out, "size:    %s\n", humanize.Bytes(uint64(resp.SizeBytes)))
	fmt.Fprintf(out, "key:     %s\n", resp.Key)
	fmt.Fprintf(out, "elapsed: %s\n", elapsed.Round(time.Millisecond))
	return nil
}

func runFingerprint(args []string, out io.Writer) error {
	cmd := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	text := cmd.String("text", "", "Text to fingerprint")
	language := cmd.String("language", "en-US", "BCP 47 language code")
	ext := cmd.String("ext", ".mp3", "Audio file extension")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *text == "" {
		return errors.New("-text is required")
	}
	lang, err := speech.CanonicalLanguage(*language)
	if err != nil {
		return fmt.Errorf("language %q: %w", *language, err)
	}
	key := speech.NewKey(*text, lang)
	fmt.Fprintf(out, "hash:   %s\n", key.Hash)
	fmt.Fprintf(out, "file:   %s%s\n", key.Stem(), *ext)
	fmt.Fprintf(out, "object: %s\n", key.ObjectName(*ext))
	return nil
}
