package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"slideview/internal/config"
	"slideview/internal/playback"
)

// stripHitTester finds the thumbnail under a screen position
type stripHitTester interface {
	RecordAt(x, y int) *playback.Record
}

// InputHandler handles keyboard and mouse input processing
type InputHandler struct {
	inputActions        InputActions
	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager
	strip               stripHitTester
}

// NewInputHandler creates a new InputHandler
func NewInputHandler(inputActions InputActions, keybindingManager *KeybindingManager, mousebindingManager *MousebindingManager, strip stripHitTester) *InputHandler {
	return &InputHandler{
		inputActions:        inputActions,
		keybindingManager:   keybindingManager,
		mousebindingManager: mousebindingManager,
		strip:               strip,
	}
}

// HandleInput processes all input for the current frame
// Returns true if any input was processed, false otherwise
func (h *InputHandler) HandleInput() bool {
	if h.inputActions.GetTotalPagesCount() == 0 {
		return h.keybindingManager.ExecuteAction(config.ActionExit, h.inputActions)
	}

	h.mousebindingManager.BeginFrame()

	// A click on the strip is a jump, not a click binding
	inputProcessed := h.handleStripClick()
	mouseFree := !inputProcessed

	for _, def := range actionDefinitions {
		if h.keybindingManager.ExecuteAction(def.Name, h.inputActions) {
			inputProcessed = true
		}
		if mouseFree && h.mousebindingManager.ExecuteAction(def.Name, h.inputActions) {
			inputProcessed = true
		}
	}

	return inputProcessed
}

func (h *InputHandler) handleStripClick() bool {
	if h.strip == nil || !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return false
	}
	rec := h.strip.RecordAt(ebiten.CursorPosition())
	if rec == nil {
		return false
	}
	h.inputActions.JumpToRecord(rec)
	return true
}
