// Package health реализует проверку живости HTTP-сервера.
package health

import (
	"net/http"

	"github.com/go-chi/render"
)

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /health [get]
func ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]bool{"ok": true})
}
