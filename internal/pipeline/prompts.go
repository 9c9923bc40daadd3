package pipeline

import (
	"fmt"

	"github.com/mentorboxai/api/internal/model"
)

func buildUnderstandPrompt(concept, goal string) string {
	return fmt.Sprintf(`Analyze the concept and goal for educational video generation.
Concept: %s
Goal: %s

Return ONLY a JSON object with:
{
  "topic": "short topic name",
  "core_concepts": ["key ideas a learner must grasp"],
  "prerequisites": ["what the viewer should already know"],
  "misconceptions": ["common mistakes to address"],
  "key_facts": ["numbers, ratios or formulas worth showing"],
  "visual_metaphors": ["concrete visuals that explain the idea"]
}`, concept, goal)
}

func buildPlanPrompt(understanding model.Document, duration, maxScenes int) string {
	perScene := duration
	if maxScenes > 0 {
		perScene = duration / maxScenes
	}
	return fmt.Sprintf(`You are a Video Director planning the VISUAL NARRATIVE for an educational animation.
Script: %[1]s
Duration: %[2]ds (the user requested this exact duration, respect it)
Maximum scenes: %[3]d (about %[4]ds per scene)

DURATION BUDGET
For %[2]d seconds, plan:
- Intro: 5-8 seconds (title, hook, visual teaser)
- Core content: the remaining time minus the takeaway (main teaching with rich visuals)
- Takeaway: 7-10 seconds (key point and formula or summary)

THE SUM OF ALL SCENE DURATIONS MUST EQUAL %[2]d SECONDS.

INFORMATION DENSITY
Each core scene must contain:
1. At least 2-3 labeled objects (diagrams, not just text)
2. A transformation or process animation
3. A concept caption that teaches something specific
4. At least 1 exam-relevant fact (number, ratio, formula)

Return ONLY a JSON object:
{
  "title": "max 25 characters",
  "total_duration": %[2]d,
  "scenes": [
    {
      "id": 1,
      "name": "Intro",
      "duration": 8,
      "objects": ["labeled objects on screen"],
      "animation": "what moves or transforms",
      "caption": "what the viewer learns",
      "fact": "exam-relevant fact"
    }
  ]
}`, marshalIndent(understanding), duration, maxScenes, perScene)
}

func buildVerifyPrompt(concept, goal string, plan model.Document) string {
	return fmt.Sprintf(`Verify this educational video plan.

Concept: %s
Goal: %s

Plan:
%s

Check:
1. Is content accurate for the requested topic?
2. Are visuals specific (not generic)?
3. Does it teach the concept effectively?

Return JSON:
{
  "approved": true/false,
  "issues": ["any problems"],
  "final_plan": { corrected plan if needed }
}`, concept, goal, marshalIndent(plan))
}

func buildGeneratePrompt(plan model.Document, concept, goal, example string) string {
	reference := ""
	if example != "" {
		reference = fmt.Sprintf("\nREFERENCE EXAMPLE (match this style and quality):\n```python\n%s\n```\n", example)
	}
	return fmt.Sprintf(`You are a cinematic Manim animator creating 3Blue1Brown-quality educational videos.

CONCEPT: %s
GOAL: %s
VIDEO PLAN: %s

RULES
1. Title max 25 characters.
2. Respect the scene durations from the plan: animation time plus self.wait() equals the planned duration.
3. Every scene is information rich: 2-3 labeled visual objects, 1 transformation or process
   animation, 1 exam fact shown visually, 1 caption explaining the concept.
4. Keep every object inside the frame (x within [-7, 7], y within [-4, 4]).
5. Use a single Scene subclass named GeneratedScene and only the manim and numpy imports.
%s
Return ONLY the complete Python file, no explanations.`, concept, goal, marshalIndent(plan), reference)
}

func buildRefinePrompt(code string) string {
	return fmt.Sprintf(`You are reviewing Manim code for an educational animation.

Fix quality issues without changing what the animation teaches:
- objects placed outside the visible frame
- overlapping text or labels
- titles longer than 25 characters
- deprecated Manim APIs (ShowCreation, TextMobject, TexMobject)
- missing self.wait() between scenes
- unused imports or undefined names

CODE:
%s

Return ONLY the complete corrected Python file, no explanations.`, code)
}

func buildValidationPrompt(code, concept string) string {
	return fmt.Sprintf(`You are a strict validator for Manim animation code teaching "%s".

Assess the code below:
1. Does it run with Manim Community Edition without errors?
2. Are all objects inside the frame and free of overlaps?
3. Does it teach the concept accurately?
4. Do scene timings add up to the planned duration?

CODE:
%s

Return ONLY a JSON object:
{
  "validation_passed": true/false,
  "metrics": {
    "syntax_ok": true/false,
    "layout_score": 0-10,
    "accuracy_score": 0-10,
    "issues": ["problems found"]
  },
  "fixed_code": "complete corrected Python file when validation fails, otherwise empty"
}`, concept, code)
}
