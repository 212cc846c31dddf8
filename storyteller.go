package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"werewolves/internal/engine"
)

const storytellerSystemPrompt = `You are a dramatic storyteller for a medieval werewolf game. When players are killed or lynched, you tell a short atmospheric story about their fate. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves.`

// Storyteller generates a dramatic story after deaths in the game.
// onChunk is called with each text chunk as it streams in.
type Storyteller interface {
	Tell(ctx context.Context, history []string, onChunk func(string)) (string, error)
}

// globalStoryteller is nil when no provider is configured (feature disabled).
var globalStoryteller Storyteller

type llmStoryteller struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (s *llmStoryteller) Tell(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			"Game history so far:\n"+strings.Join(history, "\n")+
				"\n\nTell a short dramatic story (2-3 sentences) about what just happened to the latest victims."),
	}

	var fullText strings.Builder
	opts := append(slices.Clip(s.callOpts), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := s.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.StorytellerTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.StorytellerTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Storyteller: temperature=%.2f", f)
		} else {
			log.Printf("Storyteller: invalid temperature %q: %v", cfg.StorytellerTemperature, err)
		}
	}

	if cfg.StorytellerThinking != "" {
		mode := llms.ThinkingMode(cfg.StorytellerThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
			log.Printf("Storyteller: thinking=%s", mode)
		default:
			log.Printf("Storyteller: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.StorytellerThinking)
		}
	}

	return opts
}

// newLLM builds the chat model for the configured provider. It returns a nil
// model when no provider is set.
func newLLM(cfg AppConfig) (llms.Model, error) {
	model := cfg.StorytellerModel
	switch cfg.StorytellerProvider {
	case "":
		return nil, nil
	case "ollama":
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.StorytellerOllamaURL))
	case "openai":
		return openai.New(openai.WithModel(model))
	case "claude":
		return anthropic.New(anthropic.WithModel(model))
	case "gemini":
		return googleai.New(context.Background(), googleai.WithDefaultModel(model))
	case "groq":
		return openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
	case "openai-compatible":
		if cfg.StorytellerURL == "" {
			return nil, errors.New("storyteller_url is required for openai-compatible provider")
		}
		opts := []openai.Option{openai.WithModel(model), openai.WithBaseURL(cfg.StorytellerURL)}
		if cfg.StorytellerAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.StorytellerAPIKey))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown storyteller provider %q", cfg.StorytellerProvider)
	}
}

// initStoryteller sets up the global storyteller from config. A provider
// that fails to initialize leaves the feature off rather than stopping the
// server.
func initStoryteller(cfg AppConfig) {
	globalStoryteller = nil
	llm, err := newLLM(cfg)
	if err != nil {
		log.Printf("Storyteller: failed to init %s (%s): %v", cfg.StorytellerProvider, cfg.StorytellerModel, err)
		return
	}
	if llm == nil {
		log.Printf("Storyteller: disabled (set storyteller_provider to enable)")
		return
	}
	globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: buildCallOpts(cfg)}
	log.Printf("Storyteller: %s model=%s", cfg.StorytellerProvider, cfg.StorytellerModel)
}

// eventStory carries storyteller text as it streams in. Final is set on the
// last chunk, which holds the whole story.
const eventStory engine.EventKind = "story"

// StoryChunk is the payload of a story event.
type StoryChunk struct {
	ActionID int64  `json:"action_id"`
	Text     string `json:"text"`
	Final    bool   `json:"final,omitempty"`
}

// maybeGenerateStory asynchronously streams a story into the game history
// after a death. Partial text is flushed to the history row and to the
// players every 300ms. Runs on the session goroutine; the story itself is
// told on its own goroutine.
func (s *Session) maybeGenerateStory(cycle int, phase string) {
	if s.storyteller == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Fetch all public history at this point in time
		descriptions, err := getPublicHistory(s.id)
		if err != nil {
			log.Printf("maybeGenerateStory: fetch history: %v", err)
			return
		}

		// Placeholder row, hidden from history until text arrives
		storyRowID, err := recordAction(GameAction{
			GameID:     s.id,
			Cycle:      cycle,
			Phase:      phase,
			ActionType: ActionStory,
			Visibility: VisibilityPublic,
		})
		if err != nil {
			logError("maybeGenerateStory: insert placeholder", err)
			return
		}

		publish := func(text string, final bool) {
			s.hub.Publish(engine.Event{
				Kind:    eventStory,
				GameID:  s.id,
				Cycle:   cycle,
				Payload: StoryChunk{ActionID: storyRowID, Text: text, Final: final},
			})
		}

		// Buffer for streamed tokens, updated by the streaming callback
		var mu sync.Mutex
		var buf strings.Builder

		// Flush goroutine: pushes partial text to DB and clients every 300ms
		done := make(chan struct{})
		flushed := make(chan struct{})
		go func() {
			defer close(flushed)
			ticker := time.NewTicker(300 * time.Millisecond)
			defer ticker.Stop()
			last := ""
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					text := strings.TrimSpace(buf.String())
					mu.Unlock()
					if text != "" && text != last {
						last = text
						updateActionDescription(storyRowID, text)
						publish(text, false)
					}
				case <-done:
					return
				}
			}
		}()

		ctx, cancel := context.WithTimeout(s.storyCtx, 30*time.Second)
		defer cancel()

		_, err = s.storyteller.Tell(ctx, descriptions, func(chunk string) {
			mu.Lock()
			buf.WriteString(chunk)
			mu.Unlock()
		})

		close(done)
		<-flushed

		if err != nil {
			log.Printf("maybeGenerateStory: storyteller error: %v", err)
			deleteAction(storyRowID)
			return
		}

		mu.Lock()
		finalText := strings.TrimSpace(buf.String())
		mu.Unlock()

		if finalText == "" {
			deleteAction(storyRowID)
			return
		}

		if err := updateActionDescription(storyRowID, finalText); err != nil {
			logError("maybeGenerateStory: final update", err)
		}
		log.Printf("Storyteller: completed story for game %s cycle %d %s", s.id, cycle, phase)
		publish(finalText, true)
	}()
}
