// Package deliver hands a share link to the outside world: social deep links,
// the clipboard and the platform share sheet.
package deliver

import (
	"crosssync/pkg/domain"
	"crosssync/svc/share"
	"strings"
)

const EmailSubject = "Shared from CrossSync"

type Platform struct {
	Name  string
	Icon  string
	build func(url, text string) string
}

func (p Platform) Build(url, text string) string { return p.build(url, text) }

var enc = share.EscapeComponent

var Platforms = []Platform{
	{Name: "WhatsApp", Icon: "whatsapp", build: func(u, t string) string {
		return "https://wa.me/?text=" + enc(t+"\n\n"+u)
	}},
	{Name: "X", Icon: "x", build: func(u, t string) string {
		return "https://twitter.com/intent/tweet?text=" + enc(t) + "&url=" + enc(u)
	}},
	{Name: "Telegram", Icon: "telegram", build: func(u, t string) string {
		return "https://t.me/share/url?url=" + enc(u) + "&text=" + enc(t)
	}},
	{Name: "Facebook", Icon: "facebook", build: func(u, t string) string {
		return "https://www.facebook.com/sharer/sharer.php?u=" + enc(u) + "&quote=" + enc(t)
	}},
	{Name: "LinkedIn", Icon: "linkedin", build: func(u, t string) string {
		return "https://www.linkedin.com/sharing/share-offsite/?url=" + enc(u) + "&summary=" + enc(t)
	}},
	{Name: "Email", Icon: "email", build: func(u, t string) string {
		return "mailto:?subject=" + enc(EmailSubject) + "&body=" + enc(t+"\n\n"+u)
	}},
}

func Lookup(name string) (Platform, bool) {
	for _, p := range Platforms {
		if strings.EqualFold(p.Name, name) || p.Icon == strings.ToLower(name) {
			return p, true
		}
	}
	return Platform{}, false
}

type Link struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
	URL  string `json:"url"`
}

func ShareText(userName string) string {
	if userName == "" {
		userName = "anonymous"
	}
	return "Check out this content shared via CrossSync by " + userName
}

// SocialLinks builds a deep link per platform for shareURL.
func SocialLinks(shareURL, userName string) []Link {
	text := ShareText(userName)
	out := make([]Link, 0, len(Platforms))
	for _, p := range Platforms {
		out = append(out, Link{Name: p.Name, Icon: p.Icon, URL: p.Build(shareURL, text)})
	}
	return out
}

// PlainText is the clipboard form of stored markup: tags removed, nothing else.
func PlainText(html string) string {
	return domain.StripTags(html)
}
