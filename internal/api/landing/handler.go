package landing

import (
	"bytes"
	"html"
	"html/template"
	"net/http"

	"checkout-server/config"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var pages = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
  <h1>{{.Name}} Checkout</h1>
  <button onclick="checkout()">Join Now – {{.Price}}</button>
  <script>
    async function checkout() {
      const res = await fetch('/create-checkout-session', { method: 'POST' });
      const data = await res.json();
      if (data.url) { window.location = data.url; } else { alert(data.error); }
    }
  </script>
</body>
</html>
`))

func init() {
	template.Must(pages.New("result").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
  <h1>{{.Heading}}</h1>
  <p>{{.Message}}</p>
  <a href="/">Back</a>
</body>
</html>
`))
}

// Handler serves the static offer page. Pages are rendered once, at startup.
type Handler struct {
	index   []byte
	success []byte
	cancel  []byte
}

func NewHandler(offer config.Offer) (*Handler, error) {
	// Strip any markup from the configured name; the template escapes the rest.
	name := html.UnescapeString(bluemonday.StrictPolicy().Sanitize(offer.Name))
	price := FormatPrice(offer.AmountMinorUnits, offer.Currency)

	index, err := render("index", map[string]string{"Name": name, "Price": price})
	if err != nil {
		return nil, err
	}
	success, err := render("result", map[string]string{
		"Name":    name,
		"Heading": "Payment received",
		"Message": "Thank you. Your membership billing starts once the program period ends.",
	})
	if err != nil {
		return nil, err
	}
	cancel, err := render("result", map[string]string{
		"Name":    name,
		"Heading": "Checkout cancelled",
		"Message": "You have not been charged.",
	})
	if err != nil {
		return nil, err
	}

	return &Handler{index: index, success: success, cancel: cancel}, nil
}

func render(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.index)
}

func (h *Handler) Success(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.success)
}

func (h *Handler) Cancel(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.cancel)
}
