package capture

import (
	"fmt"

	"github.com/use-agent/portalshot/config"
	"github.com/use-agent/portalshot/driver"
)

// OpenDriver connects the backend named in cfg.
func OpenDriver(cfg config.DriverConfig) (driver.Driver, error) {
	switch cfg.Backend {
	case "", "rod":
		return driver.NewRod(driver.RodOptions{
			ControlURL:   cfg.ControlURL,
			Headless:     cfg.Headless,
			NoSandbox:    cfg.NoSandbox,
			BrowserBin:   cfg.BrowserBin,
			Stealth:      cfg.Stealth,
			Headers:      cfg.Headers,
			QueryTimeout: cfg.QueryTimeout,
		})
	case "webdriver":
		return driver.NewWebDriver(driver.WebDriverOptions{
			URL:          cfg.WebDriverURL,
			BrowserName:  cfg.BrowserName,
			Headless:     cfg.Headless,
			QueryTimeout: cfg.QueryTimeout,
		})
	case "static":
		return driver.LoadStaticSite(cfg.StaticManifest)
	default:
		return nil, fmt.Errorf("unknown driver backend %q (want rod, webdriver or static)", cfg.Backend)
	}
}
