package policy

import "github.com/eliteGoblin/focusd/nagctl/internal/domain"

// DefaultScreenshotInterval is used until the user picks one.
const DefaultScreenshotInterval = 5

// DefaultBlockedProcesses are the usual game launchers.
func DefaultBlockedProcesses() []string {
	return []string{
		"steam.exe",
		"epicgameslauncher.exe",
		"minecraft.exe",
		"cs2.exe",
		"osu.exe",
	}
}

// DefaultMessages are shown by the worker until the user writes their own.
func DefaultMessages() []string {
	return []string{
		"I can see what you are doing. Back to work.",
		"Finish the assignment first, then you can play.",
		"You will thank yourself tomorrow for studying tonight.",
		"Lazy now, regret later. Don't say nobody warned you.",
		"You are smart, just distracted. Close the game.",
		"Work hard now so you don't have to work this hard later.",
	}
}

// DefaultConfiguration returns the first-run configuration.
// Every call returns a fresh value.
func DefaultConfiguration() *domain.Configuration {
	interval := DefaultScreenshotInterval
	return &domain.Configuration{
		QuietStart:                "22:00",
		QuietEnd:                  "06:00",
		BlockedProcesses:          DefaultBlockedProcesses(),
		Messages:                  DefaultMessages(),
		ScreenshotIntervalMinutes: &interval,
		DeterrentEnabled:          false,
	}
}
