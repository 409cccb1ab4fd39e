package middleware

import (
	"net/http"

	"github.com/mssola/useragent"

	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Device parses the User-Agent header into structured client metadata. The
// coordination services attach it to audit events so organizer actions can be
// traced back to a client surface.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		ua := useragent.New(raw)
		browser, _ := ua.Browser()
		ctx := requestcontext.WithDeviceInfo(r.Context(), requestcontext.Device{
			Browser: browser,
			OS:      ua.OS(),
			Mobile:  ua.Mobile(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
