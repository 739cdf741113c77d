package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Bold text", SanitizeString("  <b>Bold</b>   text "))
	assert.Equal(t, "Hello", SanitizeString("<script>alert(1)</script>Hello"))
	assert.Equal(t, "Tom & Jerry's", SanitizeString("Tom & Jerry's"))
	assert.Equal(t, "a < b", SanitizeString("a < b"))
	assert.Equal(t, `5 > 3 "quoted"`, SanitizeString(`5 > 3 "quoted"`))
	assert.Equal(t, "bold", SanitizeString("&lt;b&gt;bold&lt;/b&gt;"))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\n\n  line two"))
	assert.Equal(t, "", SanitizeString(""))
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "john.doe@example.com", SanitizeEmail("  John.Doe@Example.COM "))
	assert.Equal(t, "", SanitizeEmail("not-an-email"))
	assert.Equal(t, "", SanitizeEmail("a@b"))
}

func TestSanitizePhone(t *testing.T) {
	assert.Equal(t, "+1 (555) 010-2030", SanitizePhone("+1 (555) 010-2030<x>"))
	assert.Equal(t, "5550100", SanitizePhone("555abc0100"))
}

func TestSanitizeURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.jpg", SanitizeURL(" https://cdn.example.com/a.jpg "))
	assert.Equal(t, "", SanitizeURL("javascript:alert(1)"))
	assert.Equal(t, "", SanitizeURL("ftp://example.com/file"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "my_report_1.pdf", SanitizeFilename("my report 1.pdf"))
	assert.Equal(t, "hidden", SanitizeFilename("..hidden"))
}

func TestSanitizeMapInfersRulesFromKeys(t *testing.T) {
	in := map[string]interface{}{
		"email":       " Guard@Example.com ",
		"phone":       "555-0100 ext<b>",
		"password":    "<keep> me",
		"camera_id":   "cam 01;drop",
		"website":     "javascript:void(0)",
		"description": "<i>Broken</i> gate",
		"count":       float64(3),
		"contacts": []interface{}{
			map[string]interface{}{"name": "<b>Ann</b>", "email": "ANN@EXAMPLE.COM"},
		},
	}

	out := SanitizeMap(in)

	assert.Equal(t, "guard@example.com", out["email"])
	assert.Equal(t, "555-0100", out["phone"])
	assert.Equal(t, "<keep> me", out["password"])
	assert.Equal(t, "cam01drop", out["camera_id"])
	assert.Equal(t, "", out["website"])
	assert.Equal(t, "Broken gate", out["description"])
	assert.Equal(t, float64(3), out["count"])

	contacts := out["contacts"].([]interface{})
	first := contacts[0].(map[string]interface{})
	assert.Equal(t, "Ann", first["name"])
	assert.Equal(t, "ann@example.com", first["email"])
}
