package models

import "strconv"

// SettingName identifies a per-channel setting
type SettingName string

const (
	SettingPrefix             SettingName = "prefix"
	SettingPlatform           SettingName = "platform"
	SettingLanguage           SettingName = "language"
	SettingRespondToSettings  SettingName = "respond_to_settings"
	SettingDeleteAfterRespond SettingName = "delete_after_respond"
)

// Defaults holds the values returned for settings that have no stored row.
// It is built once and passed by value.
type Defaults struct {
	Prefix             string
	Platform           string
	Language           string
	RespondToSettings  bool
	DeleteAfterRespond bool
}

// NewDefaults returns the compiled-in defaults with the given bot-global prefix.
// An empty prefix keeps "/".
func NewDefaults(prefix string) Defaults {
	d := Defaults{
		Prefix:             "/",
		Platform:           "pc",
		Language:           "en-us",
		RespondToSettings:  true,
		DeleteAfterRespond: true,
	}
	if prefix != "" {
		d.Prefix = prefix
	}
	return d
}

// Value returns the default for name in its stored text form.
// Unknown names have no default and yield "".
func (d Defaults) Value(name SettingName) string {
	switch name {
	case SettingPrefix:
		return d.Prefix
	case SettingPlatform:
		return d.Platform
	case SettingLanguage:
		return d.Language
	case SettingRespondToSettings:
		return strconv.FormatBool(d.RespondToSettings)
	case SettingDeleteAfterRespond:
		return strconv.FormatBool(d.DeleteAfterRespond)
	default:
		return ""
	}
}
