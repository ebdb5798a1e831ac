package main

import "slideview/internal/config"

// intervalStep is how much interval_up and interval_down change the
// slideshow interval, in seconds.
const intervalStep = 0.5

// ActionDefinition defines an action with its default mouse bindings and description.
// Keyboard defaults live in the config package because the settings file can
// override them.
type ActionDefinition struct {
	Name         string
	MouseActions []string
	Description  string
}

// actionDefinitions contains all actions in the order input is checked
var actionDefinitions = []ActionDefinition{
	{config.ActionExit, []string{}, "Quit application"},
	{config.ActionHelp, []string{"Alt+RightClick"}, "Show/hide help"},
	{config.ActionInfo, []string{}, "Show/hide info line"},
	{config.ActionNext, []string{"LeftClick", "WheelDown"}, "Next image"},
	{config.ActionPrevious, []string{"RightClick", "WheelUp"}, "Previous image"},
	{config.ActionJumpFirst, []string{}, "Jump to first image"},
	{config.ActionJumpLast, []string{}, "Jump to last image"},
	{config.ActionToggleAutoplay, []string{"MiddleClick"}, "Start/stop slideshow"},
	{config.ActionToggleShuffle, []string{}, "Toggle shuffle"},
	{config.ActionToggleRepeat, []string{}, "Toggle repeat"},
	{config.ActionIntervalUp, []string{"Ctrl+WheelUp"}, "Slower slideshow"},
	{config.ActionIntervalDown, []string{"Ctrl+WheelDown"}, "Faster slideshow"},
	{config.ActionToggleDpiOverride, []string{}, "Toggle DPI override"},
	{config.ActionToggleStrip, []string{}, "Show/hide thumbnail strip"},
	{config.ActionFullscreen, []string{"DoubleLeftClick"}, "Toggle fullscreen"},
}

// ActionExecutor provides centralized action execution logic shared by the
// keyboard and mouse handlers
type ActionExecutor struct{}

// NewActionExecutor creates a new ActionExecutor instance
func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{}
}

// ExecuteAction executes the given action using the InputActions interface
func (ae *ActionExecutor) ExecuteAction(action string, inputActions InputActions) bool {
	switch action {
	case config.ActionExit:
		inputActions.Exit()
	case config.ActionHelp:
		inputActions.ToggleHelp()
	case config.ActionInfo:
		inputActions.ToggleInfo()
	case config.ActionNext:
		inputActions.NavigateNext()
	case config.ActionPrevious:
		inputActions.NavigatePrevious()
	case config.ActionJumpFirst:
		inputActions.JumpToPage(1)
	case config.ActionJumpLast:
		totalPages := inputActions.GetTotalPagesCount()
		if totalPages > 0 {
			inputActions.JumpToPage(totalPages)
		}
	case config.ActionToggleAutoplay:
		inputActions.ToggleAutoplay()
	case config.ActionToggleShuffle:
		inputActions.ToggleShuffle()
	case config.ActionToggleRepeat:
		inputActions.ToggleRepeat()
	case config.ActionIntervalUp:
		inputActions.AdjustInterval(intervalStep)
	case config.ActionIntervalDown:
		inputActions.AdjustInterval(-intervalStep)
	case config.ActionToggleDpiOverride:
		inputActions.ToggleDpiOverride()
	case config.ActionToggleStrip:
		inputActions.ToggleStrip()
	case config.ActionFullscreen:
		inputActions.ToggleFullscreen()
	default:
		return false
	}

	return true
}

// globalActionExecutor is the global instance of ActionExecutor used throughout the application
var globalActionExecutor = NewActionExecutor()

// GetActionDescriptions returns a map of action names to their descriptions
func GetActionDescriptions() map[string]string {
	descriptions := make(map[string]string)
	for _, action := range actionDefinitions {
		descriptions[action.Name] = action.Description
	}
	return descriptions
}

// GetDefaultMousebindings returns a map of action names to their default mouse bindings
func GetDefaultMousebindings() map[string][]string {
	mousebindings := make(map[string][]string)
	for _, action := range actionDefinitions {
		if len(action.MouseActions) > 0 {
			mousebindings[action.Name] = action.MouseActions
		}
	}
	return mousebindings
}
