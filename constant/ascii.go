package constant

// AsciiArtLogo is displayed on the root help screen.
const AsciiArtLogo = `
     _           _  _          _  _
  __| | ___  ___(_)| |__   ___| || | ___
 / _` + "`" + ` |/ _ \/ __| || '_ \ / _ \ || |/ _ \
| (_| |  __/ (__| || |_) |  __/ || |  __/
 \__,_|\___|\___|_||_.__/ \___|_||_|\___|
`
