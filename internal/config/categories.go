package config

// DefaultClassifierRules returns the built-in keyword rule sets. Matching is
// a case-insensitive substring test against the full URL, so keywords such
// as "docs." intentionally match any docs subdomain.
func DefaultClassifierRules() ClassifierConfig {
	return ClassifierConfig{
		Distraction: []Rule{
			// Social
			{"facebook.com", "social"},
			{"instagram.com", "social"},
			{"twitter.com", "social"},
			{"//x.com", "social"},
			{"tiktok.com", "social"},
			{"reddit.com", "social"},
			{"snapchat.com", "social"},
			{"pinterest.com", "social"},
			{"tumblr.com", "social"},
			{"threads.net", "social"},

			// Entertainment
			{"youtube.com", "entertainment"},
			{"netflix.com", "entertainment"},
			{"twitch.tv", "entertainment"},
			{"hulu.com", "entertainment"},
			{"disneyplus.com", "entertainment"},
			{"primevideo.com", "entertainment"},
			{"spotify.com", "entertainment"},
			{"9gag.com", "entertainment"},

			// Gaming
			{"steampowered.com", "gaming"},
			{"epicgames.com", "gaming"},
			{"roblox.com", "gaming"},

			// Shopping
			{"amazon.com", "shopping"},
			{"ebay.com", "shopping"},
			{"aliexpress.com", "shopping"},
			{"etsy.com", "shopping"},
		},
		Productive: []Rule{
			// Development
			{"github.com", "development"},
			{"gitlab.com", "development"},
			{"bitbucket.org", "development"},
			{"stackoverflow.com", "development"},
			{"stackexchange.com", "development"},
			{"pkg.go.dev", "development"},
			{"developer.mozilla.org", "development"},
			{"localhost", "development"},

			// Learning
			{"coursera.org", "learning"},
			{"udemy.com", "learning"},
			{"edx.org", "learning"},
			{"khanacademy.org", "learning"},
			{"wikipedia.org", "learning"},
			{"arxiv.org", "learning"},
			{"scholar.google", "learning"},

			// Productivity
			{"docs.", "productivity"},
			{"notion.so", "productivity"},
			{"trello.com", "productivity"},
			{"todoist.com", "productivity"},
			{"figma.com", "productivity"},
			{"calendar.google.com", "productivity"},
		},
		Work: []Rule{
			{"slack.com", "work"},
			{"mail.google.com", "work"},
			{"outlook.", "work"},
			{"teams.microsoft.com", "work"},
			{"zoom.us", "work"},
			{"atlassian.net", "work"},
			{"linear.app", "work"},
			{"asana.com", "work"},
			{"salesforce.com", "work"},
		},
	}
}
