package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"

	"github.com/rhaynes/electrack/internal/store"
)

// CountsFunc supplies the entity counts shown on the home page
type CountsFunc func(ctx context.Context) (*store.Counts, error)

// HomeHandler renders the HTML home page with a summary of what has been
// synced so far
func HomeHandler(counts CountsFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		summary, err := counts(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to load entity counts")
			summary = &store.Counts{}
		}

		page := homePage(summary)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}

func homePage(counts *store.Counts) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		rows := []struct {
			label string
			count int
		}{
			{"Areas", counts.Areas},
			{"Elections", counts.Elections},
			{"Ballots", counts.Ballots},
			{"Candidates", counts.Candidates},
			{"People", counts.People},
			{"Parties", counts.Parties},
		}

		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Electrack</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
</style>
</head>
<body>
<h1>Electrack</h1>
<p>UK election results, synced from Democracy Club.</p>
<table>
<tr><th>Entity</th><th>Count</th></tr>
`); err != nil {
			return err
		}

		for _, r := range rows {
			row := fmt.Sprintf("<tr><td>%s</td><td>%d</td></tr>\n", templ.EscapeString(r.label), r.count)
			if _, err := io.WriteString(w, row); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "</table>\n</body>\n</html>\n")
		return err
	})
}
