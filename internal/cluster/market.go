package cluster

import (
	"fmt"

	"github.com/Iron-Ham/heist/internal/format"
	"github.com/Iron-Ham/heist/internal/logging"
)

// PurchasedName is the name requested for new purchased servers.
const PurchasedName = "pserv"

// Purchase buys purchased servers of minRAM GB until the limit is reached,
// then doubles every server's RAM while money allows. It stops at the first
// purchase it cannot afford, logging its cost, and returns the money left.
func Purchase(m Market, money, minRAM float64, logger *logging.Logger) (float64, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	limit := m.PurchasedServerLimit()
	ram := minRAM
	for i := len(m.PurchasedServers()); i < limit; i++ {
		cost := m.PurchasedServerCost(ram)
		if cost > money {
			logger.Info(fmt.Sprintf("Purchased server %d with %s RAM costs %s", i, format.RAM(ram), format.Money(cost)))
			return money, nil
		}
		hostname, err := m.PurchaseServer(PurchasedName, ram)
		if err != nil {
			return money, fmt.Errorf("purchase server: %w", err)
		}
		money -= cost
		logger.Info("purchased server", "host", hostname, "ram", format.RAM(ram))
	}

	maxRAM := m.PurchasedServerMaxRAM()
	for next := ram * 2; next <= maxRAM; next *= 2 {
		for _, hostname := range m.PurchasedServers() {
			if m.ServerMaxRAM(hostname) >= next {
				continue
			}
			cost := m.PurchasedServerUpgradeCost(hostname, next)
			if cost > money {
				logger.Info(fmt.Sprintf("Purchased server %s upgrade costs %s", format.RAM(next), format.Money(cost)))
				return money, nil
			}
			if err := m.UpgradePurchasedServer(hostname, next); err != nil {
				return money, fmt.Errorf("upgrade %s: %w", hostname, err)
			}
			money -= cost
		}
		ram = next
	}

	logger.Info(fmt.Sprintf("%d purchased servers with at least %s RAM", limit, format.RAM(ram)))
	return money, nil
}

// SuggestPorts warns about every missing port opener the player can afford
// right now, counting each suggestion as spent. It returns the money left.
func SuggestPorts(o Oracle, home string, money float64, logger *logging.Logger) float64 {
	if logger == nil {
		logger = logging.NopLogger()
	}
	for _, port := range Ports {
		if o.FileExists(port.File, home) {
			continue
		}
		if port.Cost > money {
			continue
		}
		logger.Warn("Buy " + port.File)
		money -= port.Cost
	}
	return money
}
