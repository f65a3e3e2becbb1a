// Package config loads the YAML documents that drive a simulation: agent
// configurations (the system under test), the goal generator configuration
// and the virtual user configuration. Templates are parsed at load time so
// syntax errors surface before any provider is called.
//
// Agent configuration layout:
//
//	metadata:
//	  id: nutrition-coach
//	  name: Nutrition Coach
//	llm:
//	  hub: together
//	  model: meta-llama/Llama-3.3-70B-Instruct-Turbo
//	  params:
//	    temperature: 0.7
//	templates:
//	  system_prompt: |
//	    You are a nutrition coach answering in ${response_language}.
//
// Process level settings come from PERSONASIM_* environment variables, see
// LoadSettings.
package config
