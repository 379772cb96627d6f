package services

// Fixed prompts for the three generative calls. Downstream parsing depends
// on the exact output contracts stated here, so edits must stay in sync
// with the planner's JSON decoding and the renderer's artifact handling.

const structurePrompt = `# Video Transcript Analysis Report

## Role
You are a professional content analyst. Convert the video transcript below
into a complete, well-structured analysis report.

## Required sections, in order
1. **Executive Summary** — the video's core message in 150-200 characters,
   plus its key terms.
2. **Main Content Analysis** — at least 3 subsections. Each subsection has a
   subtitle, a one-line summary, and a detailed analysis of at least 200
   characters grounded in the transcript.
3. **Key Insights** — the practical and academic implications.
4. **Conclusion** — synthesis of the whole and future directions.
5. **Appendix** — notable quotations and references, if any.

## Writing rules
- Formal written prose; convert all colloquial speech.
- Objective third-person voice throughout.
- Every claim grounded in the transcript, no fabrication.
- Clear headings and paragraph breaks, consistent tone.

## Output format

## Table of Contents
1. Executive Summary
2. Main Content Analysis
3. Key Insights
4. Conclusion
5. Appendix

## 1. Executive Summary
[summary]

## 2. Main Content Analysis
### 2.1 [first topic]
**Summary**: [one-line summary]
**Analysis**: [detailed analysis]

### 2.2 [second topic]
**Summary**: [one-line summary]
**Analysis**: [detailed analysis]

### 2.3 [third topic]
**Summary**: [one-line summary]
**Analysis**: [detailed analysis]

## 3. Key Insights
[insights]

## 4. Conclusion
[conclusion]

## 5. Appendix
[quotations and references]

Transcript follows:

`

const planPrompt = `Decompose the report below into visualization blocks and
output ONLY a JSON array in this exact shape:
[{"type": "chart", "text": "..."}]
"type" must be one of: chart, table, image.
"text" is the sentence describing what to visualize.
Use exactly the key names "type" and "text". No other output.

Report follows:

`

const codeGenPrompt = `Output ONLY Python code that visualizes the following
sentence. No explanations, no markdown. The code must use matplotlib.pyplot
and its last line must be exactly: plt.savefig('output.png')

Sentence:

`
