// internal/driver/cdp/scripts.go
package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// elementStateScript reports presence, visibility and enabled state for the first match.
// It always returns an object so an absent element is distinguishable from a script failure.
const elementStateScript = `(function(sel) {
	let node;
	try {
		node = document.querySelector(sel);
	} catch (e) {
		return { present: false, visible: false, enabled: false, error: String(e) };
	}
	if (!node) {
		return { present: false, visible: false, enabled: false };
	}
	const rect = node.getBoundingClientRect();
	const style = window.getComputedStyle(node);
	const visible = rect.width > 0 && rect.height > 0 &&
		style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	const enabled = !node.disabled && node.getAttribute('aria-disabled') !== 'true';
	return { present: true, visible: visible, enabled: enabled };
})(%s)`

const (
	clearLocalStorageScript   = `(function() { window.localStorage.clear(); return true; })()`
	clearSessionStorageScript = `(function() { window.sessionStorage.clear(); return true; })()`
)

type elementStateResult struct {
	Present bool   `json:"present"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

// buildElementStateScript embeds the locator as a JS string literal.
func buildElementStateScript(locator string) (string, error) {
	lit, err := json.MarshalToString(locator)
	if err != nil {
		return "", fmt.Errorf("encode locator: %w", err)
	}
	return fmt.Sprintf(elementStateScript, lit), nil
}
