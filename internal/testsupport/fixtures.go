package testsupport

// Canned generator payloads keyed to the transform and roundup schemas.
const (
	BlogJSON = `{
  "title_options": ["Foo Bar", "Foo Bar Explained"],
  "content_pillar": "Tutorials",
  "content_type": "guide",
  "meta_description": "How to set up Foo Bar step by step.",
  "outline": ["Install", "Configure"],
  "full_draft": "## Install\n\nThis step by step tutorial shows how to install Foo Bar. We delve into setup.\n\n## Configure\n\nFollow each step to configure it.",
  "key_takeaways": ["Install first", "Then configure"]
}`

	InstagramJSON = `{
  "short_caption": "Set up Foo Bar in minutes",
  "long_caption": "Everything you need to know.\n\nLink in bio.",
  "carousel_slides": ["Install it", "Configure it", ""],
  "hashtags": ["#foobar", "howto"]
}`

	TikTokJSON = `{
  "script_content": "Want Foo Bar running today?\nHere is how.",
  "on_screen_text": ["Install", "Configure"],
  "estimated_duration": "45 seconds"
}`
)

// RoundupJSON is a canned roundup synthesis payload.
const RoundupJSON = `{
  "title": "This Week in Local AI",
  "content_pillar": "News",
  "meta_description": "The week's local AI releases in one place.",
  "sections": [
    {"section_title": "New Models", "subsection_content": "Two releases.", "source_references": ["Source 1", "Source 2"]},
    {"section_title": " ", "subsection_content": "Empty heading.", "source_references": []},
    {"section_title": "Tooling", "subsection_content": "Runtimes improved.", "source_references": ["Source 3"]}
  ],
  "synthesis_conclusion": "Local inference keeps getting easier.",
  "full_draft": "## New Models\n\nTwo releases landed.\n\n## Tooling\n\nRuntimes improved.",
  "key_takeaways": ["Models are smaller", "", "Tooling matured"]
}`
