package sitematrix

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Site is one wiki listed by the sitematrix API.
type Site struct {
	URL    string
	DBName string
	// Group is the numeric language group the site was listed under, or -1
	// for entries of the specials list.
	Group   int
	Special bool
	Closed  bool
	Private bool
}

// Table holds every site in the order the API listed them: language groups
// first, then specials.
type Table struct {
	Sites []Site
}

// ParseTable decodes a sitematrix API response body.
func ParseTable(body []byte) (*Table, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	root := gjson.GetBytes(body, "sitematrix")
	if !root.IsObject() {
		return nil, ErrMalformedResponse
	}

	table := &Table{}
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if isDigits(name) {
			group, _ := strconv.Atoi(name)
			value.Get("site").ForEach(func(_, site gjson.Result) bool {
				table.Sites = append(table.Sites, newSite(site, group, false))
				return true
			})
		} else if name == "specials" {
			value.ForEach(func(_, site gjson.Result) bool {
				table.Sites = append(table.Sites, newSite(site, -1, true))
				return true
			})
		}
		return true
	})
	return table, nil
}

func newSite(v gjson.Result, group int, special bool) Site {
	return Site{
		URL:     v.Get("url").String(),
		DBName:  v.Get("dbname").String(),
		Group:   group,
		Special: special,
		Closed:  v.Get("closed").Exists(),
		Private: v.Get("private").Exists(),
	}
}

// Lookup returns the database name of the first site whose URL matches url exactly.
func (t *Table) Lookup(url string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, site := range t.Sites {
		if site.URL == url {
			return site.DBName, true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
