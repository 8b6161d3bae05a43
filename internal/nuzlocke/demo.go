package nuzlocke

// 没有推送数据时 overlay 预览使用的演示存档
const (
	DemoSavesData = "abc123|1640995200000>1640999999000|My%20Emerald%20Nuzlocke|emerald|settings|1"

	DemoGameData = `{"__team":["route_103","route_102"],` +
		`"__teams":[{"id":"gym_1","name":"Roxanne","type":"rock","group":"gym",` +
		`"team":[{"sprite":"geodude","id":"route_103"},{"sprite":"nosepass","id":"route_102"}]}],` +
		`"__starter":"fire","__custom":[],` +
		`"route_103":{"pokemon":"blaziken","name":"Blaziken","level":45,"status":1,"nature":"adamant","ability":"blaze",` +
		`"moves":["flamethrower","sky_uppercut","slash","focus_energy"],"types":["fire","fighting"],` +
		`"stats":{"hp":156,"atk":142,"def":89,"spa":120,"spd":89,"spe":100},"nickname":"Flamebird"},` +
		`"route_102":{"pokemon":"swellow","name":"Swellow","level":42,"status":1,"types":["normal","flying"]},` +
		`"route_104":{"pokemon":"gardevoir","name":"Gardevoir","level":44,"status":5,"types":["psychic","fairy"],` +
		`"death":{"type":"boss","trainer":{"name":"Norman","type":"Gym Leader","speciality":"normal"},` +
		`"opponent":{"name":"Slaking","types":["normal"]},"attack":{"name":"Facade","type":"normal"},` +
		`"location":{"name":"Petalburg Gym"}}},` +
		`"route_105":{"pokemon":"pikachu","name":"Pikachu","level":25,"status":6,"types":["electric"]}}`
)
