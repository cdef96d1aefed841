// Package task maps storyflow's LLM stages to model tiers.
//
// Story and subtask generation use the default tier. Summaries use the
// fast tier.
//
//	m := task.SelectModel(task.GenerateSubtasks, settings.LLM.Model)
package task
