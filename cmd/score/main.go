// Command score computes route quality scores for a batch read from a JSON
// file and prints the batch result.
//
//	score -in routes.json [-pipeline]
//
// The input is either {"routes": [...]} or a bare array of routes. Use "-" to
// read from stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routequality/internal/api/models"
	"github.com/breatheroute/routequality/internal/routescore"
	"github.com/breatheroute/routequality/internal/scoring"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "score:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "input file, - for stdin")
	usePipeline := fs.Bool("pipeline", false, "score with the pipeline engine")
	verbose := fs.Bool("v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := readInput(*in, stdin)
	if err != nil {
		return err
	}

	routes, err := decodeBatch(data)
	if err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	svc := routescore.NewService(routescore.ServiceConfig{Logger: logger})
	result, err := svc.ComputeBatch(ctx, routes, routescore.BatchOptions{UsePipeline: usePipeline})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(models.NewBatchScoresResponse(result))
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeBatch accepts {"routes": [...]} or a bare array of route objects.
func decodeBatch(data []byte) ([]scoring.RouteInput, error) {
	raw := json.RawMessage(data)
	if models.IsJSONObject(raw) {
		var req models.ComputeScoresRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		raw = req.Routes
	}
	if !models.IsJSONArray(raw) {
		return nil, errors.New("input must be a routes array or an object with a routes array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	routes := make([]scoring.RouteInput, 0, len(items))
	for i, item := range items {
		if !models.IsJSONObject(item) {
			return nil, fmt.Errorf("route at index %d must be an object", i)
		}
		route, err := models.DecodeRoute(item)
		if err != nil {
			return nil, fmt.Errorf("route at index %d: %w", i, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}
