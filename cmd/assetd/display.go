package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/config"
	"github.com/l1jgo/assetcore/internal/core/gate"
	"github.com/l1jgo/assetcore/internal/effect"
)

const reportWidth = 46

func printBanner(w io.Writer, cfg *config.Config) {
	mode := "執行期"
	if !cfg.Catalog.Runtime {
		mode = "設計期"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Fprintln(w, "\033[36;1m  │\033[0m            assetcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Fprintln(w, "\033[36;1m  │\033[0m         資源載入 · 快取 · 特效池          \033[36;1m│\033[0m")
	fmt.Fprintln(w, "\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  \033[1m實例:\033[0m %s \033[90m(%s · %s)\033[0m\n\n", cfg.Server.Name, cfg.Catalog.Source, mode)
}

// columns counts CJK runes as two terminal columns.
func columns(s string) int {
	n := 0
	for _, r := range s {
		if r > 0x7F {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func printSection(w io.Writer, title string) {
	rule := strings.Repeat("─", max(reportWidth-columns(title)-1, 3))
	fmt.Fprintf(w, "  \033[33m── %s %s\033[0m\n", title, rule)
}

func printOK(w io.Writer, msg string) {
	fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
}

func printReady(w io.Writer, msg string) {
	fmt.Fprintf(w, "  \033[32m▶\033[0m %s\n", msg)
}

// bootReport is what assetd prints once the gate reaches Done.
type bootReport struct {
	Entries     int // catalog entries
	Resident    int // payloads held by the catalog
	Cached      int // keys in the cache's release set
	Attempts    int // bootstrap attempts, including failed ones
	Drained     int // callbacks run by the bootstrap
	LiveEffects int
}

func collectBootReport(cat *catalog.Catalog, g *gate.Gate, cache *asset.Cache, fx *effect.Pool) bootReport {
	r := bootReport{
		Entries:     cat.Count(),
		Cached:      len(cache.Keys()),
		Attempts:    g.Attempts(),
		Drained:     g.Drained(),
		LiveEffects: fx.LiveCount(),
	}
	for _, e := range cat.Entries() {
		if cat.Resident(e.Key) {
			r.Resident++
		}
	}
	return r
}

func printBootReport(w io.Writer, r bootReport) {
	printSection(w, "資源統計")
	for _, row := range []struct {
		label string
		n     int
	}{
		{"目錄項目", r.Entries},
		{"常駐資源", r.Resident},
		{"快取鍵", r.Cached},
		{"啟動嘗試", r.Attempts},
		{"已執行回呼", r.Drained},
		{"存活特效", r.LiveEffects},
	} {
		num := fmt.Sprint(row.n)
		dots := strings.Repeat("·", max(reportWidth-4-columns(row.label)-len(num), 3))
		fmt.Fprintf(w, "  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", row.label, dots, num)
	}
	fmt.Fprintln(w)
}
