package enrich

import "strings"

// KnownService はアイコンとブランドカラーが分かっているサービス。
type KnownService struct {
	Name  string
	Icon  string
	Color string
}

var knownServices = map[string]KnownService{
	"netflix":              {Name: "Netflix", Icon: "🎬", Color: "#E50914"},
	"spotify":              {Name: "Spotify", Icon: "🎵", Color: "#1DB954"},
	"adobe creative cloud": {Name: "Adobe Creative Cloud", Icon: "🎨", Color: "#FF0000"},
	"microsoft 365":        {Name: "Microsoft 365", Icon: "📊", Color: "#0078D4"},
	"google workspace":     {Name: "Google Workspace", Icon: "📧", Color: "#4285F4"},
	"github":               {Name: "GitHub", Icon: "🐙", Color: "#181717"},
	"figma":                {Name: "Figma", Icon: "🎯", Color: "#F24E1E"},
	"notion":               {Name: "Notion", Icon: "📝", Color: "#000000"},
	"slack":                {Name: "Slack", Icon: "💬", Color: "#4A154B"},
	"zoom":                 {Name: "Zoom", Icon: "📹", Color: "#2D8CFF"},
}

// LookupKnownService はサービス名（大文字小文字を区別しない）から既知のサービスを探す。
func LookupKnownService(name string) (KnownService, bool) {
	svc, ok := knownServices[strings.ToLower(strings.TrimSpace(name))]
	return svc, ok
}
