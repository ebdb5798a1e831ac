package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Action names used as keybinding keys.
const (
	ActionExit              = "exit"
	ActionNext              = "next"
	ActionPrevious          = "previous"
	ActionJumpFirst         = "jump_first"
	ActionJumpLast          = "jump_last"
	ActionToggleAutoplay    = "toggle_autoplay"
	ActionToggleShuffle     = "toggle_shuffle"
	ActionToggleRepeat      = "toggle_repeat"
	ActionFullscreen        = "fullscreen"
	ActionToggleDpiOverride = "toggle_dpi_override"
	ActionToggleStrip       = "toggle_strip"
	ActionIntervalUp        = "interval_up"
	ActionIntervalDown      = "interval_down"
	ActionInfo              = "info"
	ActionHelp              = "help"
)

// DefaultKeybindings returns a fresh copy of the built-in bindings.
func DefaultKeybindings() map[string][]string {
	return map[string][]string{
		ActionExit:              {"Escape", "KeyQ"},
		ActionNext:              {"ArrowRight", "Space", "PageDown", "KeyN"},
		ActionPrevious:          {"ArrowLeft", "Backspace", "PageUp", "KeyB"},
		ActionJumpFirst:         {"Home"},
		ActionJumpLast:          {"End"},
		ActionToggleAutoplay:    {"KeyP", "Enter"},
		ActionToggleShuffle:     {"KeyS"},
		ActionToggleRepeat:      {"KeyR"},
		ActionFullscreen:        {"KeyF", "Alt+Enter"},
		ActionToggleDpiOverride: {"KeyD"},
		ActionToggleStrip:       {"KeyT"},
		ActionIntervalUp:        {"Equal", "Shift+ArrowUp"},
		ActionIntervalDown:      {"Minus", "Shift+ArrowDown"},
		ActionInfo:              {"KeyI"},
		ActionHelp:              {"Shift+Slash", "KeyH"},
	}
}

// KeyNames is the set of key names accepted in a binding, without modifiers.
var KeyNames = func() map[string]bool {
	names := map[string]bool{
		"Space": true, "Backspace": true, "Enter": true, "Escape": true,
		"Tab": true, "Home": true, "End": true, "PageUp": true, "PageDown": true,
		"ArrowUp": true, "ArrowDown": true, "ArrowLeft": true, "ArrowRight": true,
		"Comma": true, "Period": true, "Slash": true, "Semicolon": true,
		"Quote": true, "Minus": true, "Equal": true, "NumpadEnter": true,
		"F11": true,
	}
	for c := 'A'; c <= 'Z'; c++ {
		names["Key"+string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		names["Key"+string(c)] = true
		names["Numpad"+string(c)] = true
	}
	return names
}()

// ValidateKeyString checks one binding such as "Shift+KeyB".
func ValidateKeyString(keyStr string) error {
	if strings.TrimSpace(keyStr) == "" {
		return fmt.Errorf("empty key string")
	}
	parts := strings.Split(keyStr, "+")
	keyName := parts[len(parts)-1]
	if !KeyNames[keyName] {
		return fmt.Errorf("unknown key: %s", keyName)
	}
	for _, m := range parts[:len(parts)-1] {
		switch strings.ToLower(m) {
		case "shift", "ctrl", "alt":
		default:
			return fmt.Errorf("unknown modifier: %s", m)
		}
	}
	return nil
}

// ValidateKeybindings rejects unknown keys and keys bound to two actions.
func ValidateKeybindings(keybindings map[string][]string) error {
	keyToAction := make(map[string]string)
	// Sorted so the reported conflict is stable.
	for _, action := range slices.Sorted(maps.Keys(keybindings)) {
		for _, keyStr := range keybindings[action] {
			if err := ValidateKeyString(keyStr); err != nil {
				return fmt.Errorf("invalid key '%s' for action '%s': %w", keyStr, action, err)
			}
			if existing, exists := keyToAction[keyStr]; exists {
				return fmt.Errorf("key conflict: '%s' is bound to both '%s' and '%s'", keyStr, existing, action)
			}
			keyToAction[keyStr] = action
		}
	}
	return nil
}
