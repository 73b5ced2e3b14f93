package detection

// AnalysisPrompt asks a vision language model for the full analysis record
const AnalysisPrompt = `You are an image analysis service.

Return JSON only:
{
  "description": "short neutral sentence (<= 20 words)",
  "confidence": 0.0,
  "tags": [{"name": "tag", "confidence": 0.0}],
  "categories": ["category"],
  "brands": [{"label": "brand", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}],
  "objects": [{"label": "object", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}],
  "adult": {"isAdultContent": false, "isRacyContent": false, "isGoryContent": false}
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- List every clearly visible object once, most prominent first.
- Brands are only visible logos or brand marks. Use [] if there are none.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates, at most 10.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FocusPrompt asks for the single region a thumbnail should keep
const FocusPrompt = `You are an image subject locator.

Return JSON only:
{"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most central salient object).
- If no subject is found, return {"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5}}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`
