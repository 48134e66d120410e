// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentstep/pipeline/internal/log"
	"github.com/agentstep/pipeline/pkg/config"
	"github.com/agentstep/pipeline/pkg/control"
	"github.com/agentstep/pipeline/pkg/pipeline"
	"github.com/agentstep/pipeline/pkg/stepmsg"
)

var (
	runInputPath       string
	runConversationID  string
	runCheckpointLabel string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume a message transcript and print the resulting Steps",
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runInputPath, "input", "-", "path to a line-delimited message transcript, or - for stdin")
	runCmd.Flags().StringVar(&runConversationID, "conversation-id", "", "conversation id (default: a generated id)")
	runCmd.Flags().StringVar(&runCheckpointLabel, "checkpoint-on-exit", "", "if set, create a checkpoint with this label after draining")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("steppipe: load config: %w", err)
	}

	conversationID := runConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	p, err := pipeline.New(ctx, cfg, pipeline.Options{
		ConversationID: conversationID,
		Logger:         log.Logger(),
	})
	if err != nil {
		return fmt.Errorf("steppipe: construct pipeline: %w", err)
	}
	p.Run()
	defer p.Shutdown()

	in, closeIn, err := openInput(runInputPath)
	if err != nil {
		return err
	}
	defer closeIn()

	if err := ingestAll(ctx, p, in); err != nil {
		return err
	}
	if err := p.Flush(); err != nil {
		return fmt.Errorf("steppipe: flush final step: %w", err)
	}
	// No further messages are coming: closing the input lets the
	// Controller observe control.PullCompleted once every already-emitted
	// Step has been drained, instead of blocking forever for upstream.
	p.CloseInput()

	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		pull, err := p.NextStep(ctx)
		if err != nil {
			return fmt.Errorf("steppipe: pull step: %w", err)
		}
		switch pull.Kind {
		case control.PullOK:
			if err := enc.Encode(pull.Step); err != nil {
				return fmt.Errorf("steppipe: encode step: %w", err)
			}
		case control.PullCompleted:
			if runCheckpointLabel != "" {
				if _, err := p.History().CreateCheckpoint(ctx, runCheckpointLabel); err != nil {
					return fmt.Errorf("steppipe: create checkpoint: %w", err)
				}
			}
			log.Info("steppipe: run complete", zap.String("conversation_id", conversationID))
			return nil
		case control.PullPaused, control.PullWaitingReview:
			if _, err := p.Resume(ctx, control.Decision{Kind: control.DecisionContinue}); err != nil {
				return fmt.Errorf("steppipe: resume: %w", err)
			}
		}
	}
}

func ingestAll(ctx context.Context, p *pipeline.Pipeline, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := stepmsg.DecodeLine(line)
		if err != nil {
			return fmt.Errorf("steppipe: decode message: %w", err)
		}
		if err := p.Ingest(msg); err != nil {
			return fmt.Errorf("steppipe: ingest message: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("steppipe: read input: %w", err)
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("steppipe: open %q: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
