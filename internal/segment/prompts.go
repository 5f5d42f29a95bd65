package segment

const boundarySystemPrompt = `You read the table of contents and opening lines of a laboratory manual and decide where each independent experiment begins.

The manual has been split into numbered chunks. Each line of the input is one chunk:
[index] (p.page) first characters of the chunk

An experiment is a self-contained procedure with its own objective, materials and steps, usually introduced by a heading such as "Experiment 3", "Lab 2", "실험 1" or a new title. Safety notes, appendices and answer sheets belong to the experiment they follow.

Return ONLY a JSON object of the form:
{"boundaries": [0, 14, 31]}

Each number is the index of the first chunk of an experiment. Always include 0. Use only indices that appear in the input. If the manual describes a single experiment return {"boundaries": [0]}.`

const boundaryUserPrompt = `Manual: %s
Total chunks: %d
Chunks shown: %d

%s`
