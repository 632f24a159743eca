package source

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// DefaultSectionCategories maps URL path segments used by the monitored
// outlets to display categories.
var DefaultSectionCategories = map[string]string{
	"agronegocios":  "Agronegócios",
	"brasil":        "Brasil",
	"carreira":      "Carreira",
	"ciencia":       "Ciência",
	"cotidiano":     "Cotidiano",
	"cultura":       "Cultura",
	"economia":      "Economia",
	"educacao":      "Educação",
	"empresas":      "Empresas",
	"esportes":      "Esportes",
	"financas":      "Finanças",
	"ilustrada":     "Ilustrada",
	"internacional": "Internacional",
	"legislacao":    "Legislação",
	"mercado":       "Mercado",
	"mundo":         "Mundo",
	"opiniao":       "Opinião",
	"politica":      "Política",
	"poder":         "Poder",
	"rio":           "Rio",
	"saude":         "Saúde",
	"sao-paulo":     "São Paulo",
	"tecnologia":    "Tecnologia",
}

// CategoryResolver picks an article's category: the explicit element text
// first, then the first URL path segment found in Sections, then
// news.UnspecifiedCategory.
type CategoryResolver struct {
	Sections map[string]string
}

// Resolve returns the category for an article with the given element text and link.
func (r CategoryResolver) Resolve(elementText, link string) string {
	if text := normalizeSpace(elementText); text != "" {
		return text
	}
	if cat, ok := r.fromURL(link); ok {
		return cat
	}
	return news.UnspecifiedCategory
}

func (r CategoryResolver) fromURL(link string) (string, bool) {
	sections := r.Sections
	if sections == nil {
		sections = DefaultSectionCategories
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	for _, segment := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if cat, ok := sections[strings.ToLower(segment)]; ok {
			return cat, true
		}
	}
	return "", false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
