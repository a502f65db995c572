// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashesSurviveRedirect(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	addFlash(c, FlashInfo, "Votre commentaire a été tronqué à 1024 caractères.")
	addFlash(c, FlashSuccess, "Signalement enregistré.")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]
	assert.Equal(t, flashCookie, last.Name)

	req = httptest.NewRequest(http.MethodGet, "/view/0612345678", nil)
	req.AddCookie(last)
	rec = httptest.NewRecorder()
	flashes := popFlashes(e.NewContext(req, rec))

	assert.Equal(t, []Flash{
		{Category: FlashInfo, Message: "Votre commentaire a été tronqué à 1024 caractères."},
		{Category: FlashSuccess, Message: "Signalement enregistré."},
	}, flashes)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestPopFlashesIgnoresGarbage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "%%%not-base64"})
	assert.Nil(t, popFlashes(e.NewContext(req, httptest.NewRecorder())))
}

func TestTemplatesParse(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)
	for _, page := range pages {
		assert.Contains(t, r.templates, page)
	}
}

func TestPopFlashesRejectsForgedCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	rec := httptest.NewRecorder()
	t.Setenv("SECRET_KEY", "first")
	addFlash(e.NewContext(req, rec), FlashError, "Veuillez saisir un numéro.")
	cookie := rec.Result().Cookies()[0]

	t.Setenv("SECRET_KEY", "second")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	assert.Nil(t, popFlashes(e.NewContext(req, httptest.NewRecorder())))
}
