package pipeline

// organizeWaves buckets an analysis plan's flattened pages into the
// three generation waves spec §4.9 Phase 3 names, preserving page
// order within each wave (grounded on writer.py's _organize_waves).
func organizeWaves(plan AnalysisPlan) []wave {
	pages := plan.FlattenPages()

	var architecture, modules, guides []Page
	for _, p := range pages {
		switch p.Section {
		case "", "architecture":
			architecture = append(architecture, p)
		case "modules":
			modules = append(modules, p)
		case "guides", "api-reference":
			guides = append(guides, p)
		}
	}

	var waves []wave
	if len(architecture) > 0 {
		waves = append(waves, wave{name: "architecture", pages: architecture})
	}
	if len(modules) > 0 {
		waves = append(waves, wave{name: "modules", pages: modules})
	}
	if len(guides) > 0 {
		waves = append(waves, wave{name: "guides", pages: guides})
	}
	return waves
}

type wave struct {
	name  string
	pages []Page
}
