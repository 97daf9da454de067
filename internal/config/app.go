package config

type AppConfig struct {
	Server     ServerConfig
	Game       GameConfig
	Settlement SettlementConfig
	Log        LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	gameCfg, err := LoadGame()
	if err != nil {
		return AppConfig{}, err
	}
	settleCfg, err := LoadSettlement()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:     serverCfg,
		Game:       gameCfg,
		Settlement: settleCfg,
		Log:        logCfg,
	}, nil
}
