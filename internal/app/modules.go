package app

import (
	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/modules/env"
	"github.com/vk/reciperun/modules/exec"
	"github.com/vk/reciperun/modules/extract"
	"github.com/vk/reciperun/modules/fetch"
	"github.com/vk/reciperun/modules/print"
	"github.com/vk/reciperun/modules/remove"
	"github.com/vk/reciperun/modules/shell"
)

// coreModules is the definitive list of all step modules that are compiled
// into the reciperun binary.
var coreModules = []registry.Module{
	&shell.Module{},
	&exec.Module{},
	&fetch.Module{},
	&extract.Module{},
	&remove.Module{},
	&print.Module{},
	&env.Module{},
}
